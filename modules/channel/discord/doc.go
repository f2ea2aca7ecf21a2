// Package discord implements the channel.discord module: a notify.Sink that
// posts watcher notifications to one Discord text channel through the REST
// API, attaching long lists as text files.
package discord
