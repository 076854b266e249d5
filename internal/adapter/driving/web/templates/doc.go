// Package templates holds the templ components that render the GUI pages.
// The *_templ.go files are generated from the .templ sources with
// "go tool templ generate" run at the module root.
package templates
