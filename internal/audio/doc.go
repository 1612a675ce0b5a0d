// Package audio assembles, mixes, measures, and tags episode audio.
//
// Mixer shells out to ffmpeg through an injectable runner. Prober and Tagger
// work on the MP3 container directly. Library exposes the background music
// folder.
package audio
