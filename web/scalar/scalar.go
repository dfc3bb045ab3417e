// Package scalar serves the Scalar API reference UI for the OpenAPI document.
package scalar

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/JaimeStill/civic/pkg/module"
)

//go:embed index.html
var indexHTML string

var index = template.Must(template.New("index").Parse(indexHTML))

// NewModule mounts the reference UI at prefix. The page loads the
// document published at specURL.
func NewModule(prefix, specURL string) *module.Module {
	var page bytes.Buffer
	if err := index.Execute(&page, struct{ SpecURL string }{specURL}); err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page.Bytes())
	})
	return module.New(prefix, mux)
}
