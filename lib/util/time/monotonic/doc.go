// Package monotonic provides the router's clock.
//
// Now values come from time.Now() and keep Go's monotonic reading, so
// comparisons between them are immune to wall clock jumps. An offset learned
// from NTP is applied on top; changing the offset shifts every later reading
// by the same amount.
//
// Lifetimes throughout the path layer are half-open intervals: something
// started at T with lifetime L is live for every instant in [T, T+L) and
// expired from T+L onwards. ExpiredAt implements that rule in one place.
package monotonic
