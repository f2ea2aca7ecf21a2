package main

// Compiled-in modules register themselves in init().
import (
	_ "github.com/flemzord/pulse/internal/gateway"
	_ "github.com/flemzord/pulse/modules/channel/discord"
	_ "github.com/flemzord/pulse/modules/snapshot/store"
	_ "github.com/flemzord/pulse/modules/source/dragonite"
	_ "github.com/flemzord/pulse/modules/source/rotom"
	_ "github.com/flemzord/pulse/modules/watcher"
)
