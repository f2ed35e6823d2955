// Package audio holds the PCM primitives used to build dictation tracks:
// the track format, conversion between formats, silence, the WAV codec and
// preview playback through oto/v3.
package audio
