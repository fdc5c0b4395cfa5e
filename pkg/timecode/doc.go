// Package timecode models broadcast timecodes (hours:minutes:seconds plus a
// frame or millisecond fraction).
//
// Timecodes are built in one shot from a frame count, a wall-clock duration
// or a binary wire word (SMPTE 12M, SMPTE 331M, EBU Tech 3264), and can be
// turned back into an exact rational number of seconds. Every function is
// pure; values are immutable and safe to share between goroutines.
//
// Decoders are permissive: sub-fields outside their nominal range (seconds
// of 85, say) are passed through unchanged. Use Validate or ParseStrict when
// range checking is wanted.
package timecode
