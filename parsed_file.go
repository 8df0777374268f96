package views

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type ParsedFile struct {
	// Body is the template text with every directive turned into a template action
	Body string
	// ModTime is the modification time of the file when it was parsed
	ModTime time.Time
}

var (
	reExtend       = regexp.MustCompile(`@extends\(\s*['"]([\w\-/. ]+)['"]\s*\)`)                                 // allow slashes for dirs
	reSectionStart = regexp.MustCompile(`@section\(\s*['"]([\w\-]+)['"](?:\s*,\s*(?:'([^']*)'|"([^"]*)"))?\s*\)`) // @section('content', 'value')
	reSectionEnd   = regexp.MustCompile(`@(?:endsection|stop)\b`)                                                  // @endsection
	reParent       = regexp.MustCompile(`@parent\b`)                                                               // @parent
	reShow         = regexp.MustCompile(`@show\b`)                                                                 // @show
	reYield        = regexp.MustCompile(`@yield\(\s*['"]([\w\-]+)['"](?:\s*,\s*(?:'([^']*)'|"([^"]*)"))?\s*\)`)   // @yield('name', 'default')
	reInclude      = regexp.MustCompile(`@(include|includeIsolated)\(\s*['"]([\w\-/. ]+)['"](?:\s*,\s*([^)]+?))?\s*\)`) // @include('partial', .OtherData)
)

// parseFile turns Blade-like directives into calls to the view functions
// bound at render time.
func parseFile(raw string, modTime time.Time) *ParsedFile {
	p := &ParsedFile{ModTime: modTime}
	rest := raw

	// @extends('layouts/app') => {{ extend "layouts/app" }}
	rest = reExtend.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reExtend.FindStringSubmatch(m)
		return fmt.Sprintf(`{{ extend %s }}`, strconv.Quote(normalizeName(sm[1])))
	})

	// @section('name') => {{ section "name" }}, the inline form closes itself
	rest = reSectionStart.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reSectionStart.FindStringSubmatchIndex(m)
		sectionName := m[sm[2]:sm[3]]
		if value, ok := quotedValue(m, sm); ok {
			return fmt.Sprintf(`{{ section %s }}%s{{ endsection }}`, strconv.Quote(sectionName), value)
		}
		return fmt.Sprintf(`{{ section %s }}`, strconv.Quote(sectionName))
	})
	rest = reSectionEnd.ReplaceAllString(rest, `{{ endsection }}`)
	rest = reParent.ReplaceAllString(rest, `{{ parent }}`)
	rest = reShow.ReplaceAllString(rest, `{{ show }}`)

	// @yield('name', 'default') => {{ yield "name" "default" }}
	rest = reYield.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reYield.FindStringSubmatchIndex(m)
		yieldName := strconv.Quote(m[sm[2]:sm[3]])
		if value, ok := quotedValue(m, sm); ok {
			return fmt.Sprintf(`{{ yield %s %s }}`, yieldName, strconv.Quote(value))
		}
		return fmt.Sprintf(`{{ yield %s }}`, yieldName)
	})

	// @include('partial', .Other) => {{ include "partial" .Other }}
	rest = reInclude.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reInclude.FindStringSubmatch(m)
		fn, partialName := sm[1], normalizeName(sm[2])
		pipeline := strings.TrimSpace(sm[3])
		if pipeline == "" {
			return fmt.Sprintf(`{{ %s %s }}`, fn, strconv.Quote(partialName))
		}
		return fmt.Sprintf(`{{ %s %s %s }}`, fn, strconv.Quote(partialName), pipeline)
	})

	p.Body = rest
	return p
}

// quotedValue returns the optional second argument of a directive, matched
// either single (group 2) or double (group 3) quoted.
func quotedValue(m string, sm []int) (string, bool) {
	for _, g := range []int{2, 3} {
		if sm[2*g] > -1 {
			return m[sm[2*g]:sm[2*g+1]], true
		}
	}
	return "", false
}
