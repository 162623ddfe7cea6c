// Package path defines addresses: structural paths identifying the
// position of a container within a tracked state tree.
//
// An address is an ordered sequence of segments, each either a string
// key (object field) or an integer index (list element). Addresses have
// a canonical string form compatible with a useful subset of JSONPath:
//
//	$                     root
//	user.name             object fields
//	user.addresses[0]     list elements
//
// The string form is what mutation logs and inspector events carry;
// Parse converts it back into a Path.
package path
