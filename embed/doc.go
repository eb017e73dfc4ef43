// Package embed is the boundary between native host functions and cdata
// values: it boxes new objects onto a call frame, checks cdata arguments
// and resolves type names through the scripting layer.
package embed
