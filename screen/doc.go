// Package screen coordinates one AR screen: the tracking session, the camera
// preview and the render driver.
//
// A Screen follows the foreground lifecycle of its host:
//
//	Start   → initialise the native library, supply layout and scene
//	Resume  → (request camera permission) add camera + render views, open camera
//	Pause   → pause render, remove render view, remove camera view (closes camera)
//	Stop    → pause if needed, finalise the session
//
// Camera callbacks drive the session: PreviewStarted starts tracking with the
// frame geometry, PreviewFrame pushes frames, PreviewStopped finalises. Any
// failure while bringing the screen up closes it; nothing is retried.
package screen
