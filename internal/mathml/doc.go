// Package mathml renders TeX math as presentation MathML expressed as a hast
// tree. Conversion is done by treeblood; the markup it produces is parsed
// back into hast so later steps can walk it like any other element.
//
// Input the converter cannot handle is reported as an *Error: mismatched
// braces or environments, commands with missing arguments, unknown commands
// and environments that have no MathML rendering.
package mathml
