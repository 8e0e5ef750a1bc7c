/*
go-tracklet turns noisy per-frame object detections into stable, identity
preserving tracklets and reconciles them onto a fixed pool of reusable visual
overlays.

Each frame passes through three stages.  Detections are optionally filtered
with Non-Maximum Suppression, the tracker merges nearby detections, matches
them to existing tracklets by distance, smooths their positions and resolves
each tracklet's class under a per class capacity limit.  Finally the visual
pool binds detections to a fixed set of slots so overlays can be moved rather
than recreated.

The Engine type combines these stages, the tracker and pool packages can also
be used on their own.  See the example subdirectory for a demo streaming the
result as MJPEG.
*/
package tracklet
