// Package ui implements the polling now-playing display using bubbletea's Elm architecture.
//
// The [Model] polls a [Fetcher] once on start and then on every poll tick. Ticks are scheduled independently
// of responses, and a failed poll only flips the view to its error state until the next success.
//
// While a track is playing a frame loop interpolates the position between polls (see [ProgressState]).
// The loop is bound to an epoch: stopping it bumps the epoch so frames already in flight are ignored.
// After [Model.Close] every late poll response is dropped.
//
// Views:
//  1. [LoadingView] : before the first response
//  2. [ErrorView] : the last poll failed
//  3. [EmptyView] : nothing playing and no history
//  4. [TrackView] : the playing or last played track with a progress bar
//
// Keys are r (refresh now) and q (quit), with help rendered via charmbracelet/bubbles/help.
package ui
