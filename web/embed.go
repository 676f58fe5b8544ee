package web

import "embed"

// StaticFS embeds the single-page client (html/css/js).
//
//go:embed static/*
var StaticFS embed.FS
