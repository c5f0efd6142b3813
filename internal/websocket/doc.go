// Package websocket pushes audit progress to browsers.
//
// A Hub owns the connected clients and fans out operation snapshots produced
// by the operations broadcaster. Handler upgrades /ws requests with
// gorilla/websocket; each client runs a read pump for heartbeats and a write
// pump for queued events and pings.
package websocket
