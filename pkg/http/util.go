package http

import xutil "IndiPull/pkg/util"

// CodeList splits a comma separated query value into upper-cased indicator codes.
func CodeList(s string) []string { return xutil.SplitList(s) }
