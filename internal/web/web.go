// Package web holds the server-rendered console pages.
package web

import (
	"embed"
	"html/template"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page with helpers that render times in loc.
func Templates(loc *time.Location) (*template.Template, error) {
	if loc == nil {
		loc = time.UTC
	}
	return template.New("pages").Funcs(Funcs(loc)).ParseFS(templateFS, "templates/*.html")
}

func Funcs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"datetime": func(ms int64) string {
			if ms <= 0 {
				return "-"
			}
			return time.UnixMilli(ms).In(loc).Format("02/01/2006 15.04.05")
		},
		"reading": func(v *float64) string {
			if v == nil {
				return "-"
			}
			return strconv.FormatFloat(*v, 'f', -1, 64)
		},
		"statusClass": func(status string) string {
			first, _, _ := strings.Cut(status, " ")
			return first
		},
		"hasRole": func(role string, allowed ...string) bool {
			for _, r := range allowed {
				if r == role {
					return true
				}
			}
			return false
		},
	}
}
