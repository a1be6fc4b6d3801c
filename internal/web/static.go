package web

import (
	"embed"
)

// staticFiles holds the status page served at /.
//
//go:embed static/*
var staticFiles embed.FS
