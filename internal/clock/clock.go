// Package clock centralizes wall-clock access so tests can pin time.
package clock

import "time"

// NowFunc supplies the wall clock; tests swap it to freeze time.
var NowFunc = time.Now

// Now reports the current time through NowFunc.
func Now() time.Time { return NowFunc() }
