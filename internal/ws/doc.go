// Package ws implements the WebSocket streaming endpoint. A Hub tracks
// connected clients and periodically pushes a summary of the address pool
// and its ranked subset, so dashboards can follow collection runs live
// without polling.
package ws
