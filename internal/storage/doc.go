// Package storage persists rendered slides and finished videos.
//
// Two backends exist: Local writes beneath a directory and HTTP uploads to a
// Supabase-style bucket API. Both return the public URL of the stored object.
// Callers treat upload failures according to their own policy; slide renders
// fall back to inline data URIs while the final video upload is fatal.
package storage
