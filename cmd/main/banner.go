package main

import (
	"fmt"
	"io"
	"net"
	"strings"
)

var logo = strings.Join([]string{
	"             ,\\",
	"             \\\\\\,_",
	"              \\` ,\\",
	"         __,.-\" =__)",
	"       .\"        )",
	"    ,_/   ,    \\/\\_",
	"    \\_|    )_-\\ \\_-`",
	"jgs    `-----` `--`",
}, "\n")

// printBanner writes the startup banner with the served model and endpoints.
func printBanner(w io.Writer, addr, model string) {
	port := addr
	if _, p, err := net.SplitHostPort(addr); err == nil {
		port = p
	}
	_, _ = fmt.Fprintf(w, `
%s

White Rabbit vLLM Emulator %s
Server running on port %s
Model: %s
Health check: http://localhost:%s/health
Endpoints:
   POST /v1/chat/completions
   POST /v1/completions
   POST /v1/embeddings
   POST /tokenize, /detokenize
   GET  /v1/models, /version, /metrics
Ready to serve mock OpenAI-compatible responses!

`, logo, Version, port, model, port)
}
