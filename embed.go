package folioblog

import "embed"

// EmbeddedAssets contains the stylesheet shipped with the site, served as
// /public/site.css.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
