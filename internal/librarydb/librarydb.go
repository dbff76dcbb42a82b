// Package librarydb is the in-memory catalog backing the DB query server's
// menu responders (§4.8): artists, albums, and tracks, seeded once from a
// caller-supplied track list and queried read-only thereafter. Grounded on
// modernc.org/sqlite, the pure-Go driver the teacher's internal/materializer
// and internal/epglink packages already depend on for their own SQLite
// stores, generalized here from an on-disk catalog to an ":memory:" one.
package librarydb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Track is one seed entry: the flat shape callers provide (no separately
// pre-assigned artist/album ids — Open derives and interns those from the
// Artist/Album name strings, the normalization a directory-scanning seed
// naturally produces).
type Track struct {
	Artist          string
	Album           string
	Title           string
	Genre           string
	Key             string
	DurationSeconds uint32
	BPM             float32
	Comment         string
	Rating          uint8
	Color           string
	RelativePath    string
}

// Artist is a row of the interned artists table.
type Artist struct {
	ID   int64
	Name string
}

// Album is a row of the interned albums table.
type Album struct {
	ID       int64
	ArtistID int64
	Name     string
}

// StoredTrack is a Track with its assigned id and interned artist/album ids.
type StoredTrack struct {
	ID       int64
	ArtistID int64
	AlbumID  int64
	Track
}

// Library is the read-only query surface over the seeded catalog.
type Library struct {
	db *sql.DB
}

const schema = `
CREATE TABLE artists (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE);
CREATE TABLE albums (id INTEGER PRIMARY KEY, artist_id INTEGER NOT NULL, name TEXT NOT NULL, UNIQUE(artist_id, name));
CREATE TABLE tracks (
	id INTEGER PRIMARY KEY,
	artist_id INTEGER NOT NULL,
	album_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	genre TEXT NOT NULL,
	musical_key TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL,
	bpm REAL NOT NULL,
	comment TEXT NOT NULL,
	rating INTEGER NOT NULL,
	color TEXT NOT NULL,
	relative_path TEXT NOT NULL
);
`

// Open seeds a fresh in-memory SQLite database from tracks and returns a
// Library over it. Artist and Album rows are interned by name in insertion
// order, matching the row-id-assigned-by-insertion-order convention §4.8
// requires of every drill-down menu.
func Open(tracks []Track) (*Library, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("librarydb: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("librarydb: create schema: %w", err)
	}

	l := &Library{db: db}
	if err := l.seed(tracks); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Library) seed(tracks []Track) error {
	artistIDs := make(map[string]int64)
	albumIDs := make(map[[2]string]int64)

	for _, t := range tracks {
		artistID, ok := artistIDs[t.Artist]
		if !ok {
			res, err := l.db.Exec(`INSERT INTO artists(name) VALUES (?)`, t.Artist)
			if err != nil {
				return fmt.Errorf("librarydb: insert artist %q: %w", t.Artist, err)
			}
			artistID, _ = res.LastInsertId()
			artistIDs[t.Artist] = artistID
		}

		albumKey := [2]string{t.Artist, t.Album}
		albumID, ok := albumIDs[albumKey]
		if !ok {
			res, err := l.db.Exec(`INSERT INTO albums(artist_id, name) VALUES (?, ?)`, artistID, t.Album)
			if err != nil {
				return fmt.Errorf("librarydb: insert album %q: %w", t.Album, err)
			}
			albumID, _ = res.LastInsertId()
			albumIDs[albumKey] = albumID
		}

		_, err := l.db.Exec(
			`INSERT INTO tracks(artist_id, album_id, title, genre, musical_key, duration_seconds, bpm, comment, rating, color, relative_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			artistID, albumID, t.Title, t.Genre, t.Key, t.DurationSeconds, t.BPM, t.Comment, t.Rating, t.Color, t.RelativePath,
		)
		if err != nil {
			return fmt.Errorf("librarydb: insert track %q: %w", t.Title, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (l *Library) Close() error {
	return l.db.Close()
}

// Artists returns every artist ordered by row id (insertion order).
func (l *Library) Artists() ([]Artist, error) {
	rows, err := l.db.Query(`SELECT id, name FROM artists ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("librarydb: query artists: %w", err)
	}
	defer rows.Close()

	var out []Artist
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("librarydb: scan artist: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Albums returns every album ordered by row id.
func (l *Library) Albums() ([]Album, error) {
	rows, err := l.db.Query(`SELECT id, artist_id, name FROM albums ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("librarydb: query albums: %w", err)
	}
	defer rows.Close()

	var out []Album
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.ArtistID, &a.Name); err != nil {
			return nil, fmt.Errorf("librarydb: scan album: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AlbumsByArtist returns the albums belonging to artistID, ordered by row id.
func (l *Library) AlbumsByArtist(artistID int64) ([]Album, error) {
	rows, err := l.db.Query(`SELECT id, artist_id, name FROM albums WHERE artist_id = ? ORDER BY id`, artistID)
	if err != nil {
		return nil, fmt.Errorf("librarydb: query albums by artist: %w", err)
	}
	defer rows.Close()

	var out []Album
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.ArtistID, &a.Name); err != nil {
			return nil, fmt.Errorf("librarydb: scan album: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Titles returns every track ordered by row id.
func (l *Library) Titles() ([]StoredTrack, error) {
	return l.queryTracks(`SELECT id, artist_id, album_id, title, genre, musical_key, duration_seconds, bpm, comment, rating, color, relative_path FROM tracks ORDER BY id`)
}

// TracksByArtistAlbum returns the tracks filed under (artistID, albumID),
// ordered by row id.
func (l *Library) TracksByArtistAlbum(artistID, albumID int64) ([]StoredTrack, error) {
	return l.queryTracks(
		`SELECT id, artist_id, album_id, title, genre, musical_key, duration_seconds, bpm, comment, rating, color, relative_path
		 FROM tracks WHERE artist_id = ? AND album_id = ? ORDER BY id`,
		artistID, albumID,
	)
}

// Track fetches a single track by id, for MetadataRequest responders.
func (l *Library) Track(id int64) (StoredTrack, error) {
	tracks, err := l.queryTracks(
		`SELECT id, artist_id, album_id, title, genre, musical_key, duration_seconds, bpm, comment, rating, color, relative_path
		 FROM tracks WHERE id = ?`, id,
	)
	if err != nil {
		return StoredTrack{}, err
	}
	if len(tracks) == 0 {
		return StoredTrack{}, fmt.Errorf("librarydb: no track with id %d", id)
	}
	return tracks[0], nil
}

func (l *Library) queryTracks(query string, args ...interface{}) ([]StoredTrack, error) {
	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("librarydb: query tracks: %w", err)
	}
	defer rows.Close()

	var out []StoredTrack
	for rows.Next() {
		var t StoredTrack
		if err := rows.Scan(
			&t.ID, &t.ArtistID, &t.AlbumID, &t.Title, &t.Genre, &t.Key,
			&t.DurationSeconds, &t.BPM, &t.Comment, &t.Rating, &t.Color, &t.RelativePath,
		); err != nil {
			return nil, fmt.Errorf("librarydb: scan track: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
