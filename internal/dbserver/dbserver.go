// Package dbserver implements the DB query TCP protocol (§4.8): a
// length-prefixed client hello handshake, then a stream of dbmsg frames
// dispatched by request type to menu responders backed by internal/librarydb.
// Grounded on internal/hdhomerun/control.go's per-connection accept loop,
// per-connection read loop, and dispatch-by-type switch; frames carry no
// header and are delimited only by their own field lengths.
package dbserver

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/snapetech/prolink-impersonator/internal/librarydb"
	"github.com/snapetech/prolink-impersonator/internal/metrics"
	"github.com/snapetech/prolink-impersonator/internal/wire/dbmsg"
	"github.com/snapetech/prolink-impersonator/internal/wire/field"
)

// Port is the well-known TCP port the device discovers via MountInfoRequest
// elsewhere in the exchange (§6); the listener itself is started by the
// caller (root prolink package), this package only serves accepted conns.
const Port = 1051

// clientHello is the fixed 19-byte greeting every connection opens with.
var clientHello = []byte{0, 0, 0, 15, 'R', 'e', 'm', 'o', 't', 'e', 'D', 'B', 'S', 'e', 'r', 'v', 'e', 'r', 0}

// readySentinel answers a valid client hello.
var readySentinel = []byte{0xff, 0x20}

// Metadata facet kinds: spec.md names the nine rows a MetadataRequest
// produces but not their wire kind codes, so these are assigned here in the
// same incrementing style as dbmsg.KindArtist/Album/Title (documented in
// DESIGN.md as an Open Question resolution).
const (
	kindMetaArtist  uint32 = 0x05
	kindMetaAlbum   uint32 = 0x06
	kindMetaGenre   uint32 = 0x07
	kindMetaKey     uint32 = 0x08
	kindMetaLength  uint32 = 0x09
	kindMetaBPM     uint32 = 0x0a
	kindMetaComment uint32 = 0x0b
	kindMetaRating  uint32 = 0x0c
	kindMetaColor   uint32 = 0x0d

	// kindMountPoint marks a menu item as an NFS mount point. Spec.md
	// describes the behavior ("kind declares it mountable") but not the
	// numeric code; chosen here, documented in DESIGN.md.
	kindMountPoint uint32 = 0x01
)

// Server accepts DB query connections and dispatches their frames.
type Server struct {
	library   *librarydb.Library
	mountPath string
	logger    *log.Logger

	// Metrics is optional; see internal/keepalive.Engine.Metrics.
	Metrics *metrics.Collector
}

// NewServer returns a Server over library, answering MountInfoRequest with
// mountPath.
func NewServer(library *librarydb.Library, mountPath string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{library: library, mountPath: mountPath, logger: logger}
}

// Serve accepts connections on listener until it is closed.
func (s *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("dbserver: accept: %w", err)
		}
		go s.handleConnection(conn)
	}
}

// connState is the per-connection navigation context §4.8 requires be
// retained across frames and reset on disconnect (a fresh connState is
// simply never reused past its owning goroutine's lifetime).
type connState struct {
	mu       sync.Mutex
	category dbmsg.RequestType
	entryIDs [4]uint32
}

func (c *connState) update(req dbmsg.RequestType, args []field.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.category = req
	for i := 0; i < 4 && i < len(args); i++ {
		if args[i].Kind == field.KindU32 {
			c.entryIDs[i] = args[i].U32
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	s.logger.Printf("dbserver: connection from %s", conn.RemoteAddr())

	hello := make([]byte, len(clientHello))
	if _, err := readFull(conn, hello); err != nil {
		s.logger.Printf("dbserver: hello read: %v", err)
		return
	}
	if !bytes.Equal(hello, clientHello) {
		s.logger.Printf("dbserver: unexpected hello from %s: %x", conn.RemoteAddr(), hello)
		return
	}
	if _, err := conn.Write(readySentinel); err != nil {
		s.logger.Printf("dbserver: ready write: %v", err)
		return
	}

	state := &connState{}
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		frame, rest, err := dbmsg.Decode(buf)
		if err == nil {
			buf = rest
			state.update(frame.RequestType, frame.Args)
			response := s.dispatch(frame)
			if len(response) > 0 {
				if _, err := conn.Write(response); err != nil {
					s.logger.Printf("dbserver: write: %v", err)
					return
				}
			}
			continue
		}
		if !isIncompleteFrame(err) {
			s.logger.Printf("dbserver: malformed frame from %s: %v", conn.RemoteAddr(), err)
			return
		}

		n, err := conn.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// isIncompleteFrame reports whether err indicates the buffer simply doesn't
// yet hold a complete frame (so the caller should read more and retry)
// rather than a genuinely malformed message. dbmsg/field's error Reasons
// name truncation as "short buffer", "short length" or "declared length
// exceeds buffer"; there is no distinct sentinel for it in the wire package.
func isIncompleteFrame(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "short buffer") || strings.Contains(msg, "short length") ||
		strings.Contains(msg, "exceeds buffer")
}

func (s *Server) dispatch(frame dbmsg.Frame) []byte {
	s.Metrics.IncQueryFrame(frame.RequestType.Name())
	switch frame.RequestType {
	case dbmsg.ReqRootMenu:
		return dbmsg.Menu(frame.TransactionID, dbmsg.RootMenuItems())
	case dbmsg.ReqArtist:
		return s.artistMenu(frame)
	case dbmsg.ReqAlbum:
		return s.albumMenu(frame)
	case dbmsg.ReqTitle:
		return s.titleMenu(frame)
	case dbmsg.ReqAlbumByArtist:
		return s.albumByArtistMenu(frame)
	case dbmsg.ReqTitleByArtistAlbum:
		return s.titleByArtistAlbumMenu(frame)
	case dbmsg.ReqMetadata:
		return s.metadataMenu(frame)
	case dbmsg.ReqMountInfo:
		return s.mountInfoMenu(frame)
	case dbmsg.ReqRender:
		return successFrame(frame.TransactionID, 0).Encode()
	default:
		var echo uint32
		if len(frame.Args) > 0 && frame.Args[0].Kind == field.KindU32 {
			echo = frame.Args[0].U32
		}
		return successFrame(frame.TransactionID, echo).Encode()
	}
}

func successFrame(transactionID uint32, echo uint32) dbmsg.Frame {
	return dbmsg.NewResponse(transactionID, dbmsg.RespSuccess, []field.Field{field.NewU32(echo)})
}

func (s *Server) artistMenu(frame dbmsg.Frame) []byte {
	artists, err := s.library.Artists()
	if err != nil {
		s.logger.Printf("dbserver: artists: %v", err)
		return dbmsg.Menu(frame.TransactionID, nil)
	}
	items := make([]dbmsg.MenuItem, len(artists))
	for i, a := range artists {
		items[i] = dbmsg.MenuItem{Label: a.Name, Kind: dbmsg.KindArtist, ChildID1: uint32(a.ID)}
	}
	return dbmsg.Menu(frame.TransactionID, items)
}

func (s *Server) albumMenu(frame dbmsg.Frame) []byte {
	albums, err := s.library.Albums()
	if err != nil {
		s.logger.Printf("dbserver: albums: %v", err)
		return dbmsg.Menu(frame.TransactionID, nil)
	}
	items := make([]dbmsg.MenuItem, len(albums))
	for i, a := range albums {
		items[i] = dbmsg.MenuItem{ParentID1: uint32(a.ArtistID), Label: a.Name, Kind: dbmsg.KindAlbum, ChildID1: uint32(a.ID)}
	}
	return dbmsg.Menu(frame.TransactionID, items)
}

func (s *Server) titleMenu(frame dbmsg.Frame) []byte {
	tracks, err := s.library.Titles()
	if err != nil {
		s.logger.Printf("dbserver: titles: %v", err)
		return dbmsg.Menu(frame.TransactionID, nil)
	}
	items := make([]dbmsg.MenuItem, len(tracks))
	for i, t := range tracks {
		items[i] = dbmsg.MenuItem{ParentID1: uint32(t.ArtistID), ParentID2: uint32(t.AlbumID), Label: t.Title, Kind: dbmsg.KindTitle, ChildID1: uint32(t.ID)}
	}
	return dbmsg.Menu(frame.TransactionID, items)
}

func (s *Server) albumByArtistMenu(frame dbmsg.Frame) []byte {
	artistID := u32Arg(frame.Args, 2)
	albums, err := s.library.AlbumsByArtist(int64(artistID))
	if err != nil {
		s.logger.Printf("dbserver: albums by artist: %v", err)
		return dbmsg.Menu(frame.TransactionID, nil)
	}
	items := make([]dbmsg.MenuItem, len(albums))
	for i, a := range albums {
		items[i] = dbmsg.MenuItem{ParentID1: artistID, Label: a.Name, Kind: dbmsg.KindAlbum, ChildID1: uint32(a.ID)}
	}
	return dbmsg.Menu(frame.TransactionID, items)
}

func (s *Server) titleByArtistAlbumMenu(frame dbmsg.Frame) []byte {
	artistID := u32Arg(frame.Args, 2)
	albumID := u32Arg(frame.Args, 4)
	tracks, err := s.library.TracksByArtistAlbum(int64(artistID), int64(albumID))
	if err != nil {
		s.logger.Printf("dbserver: tracks by artist/album: %v", err)
		return dbmsg.Menu(frame.TransactionID, nil)
	}
	items := make([]dbmsg.MenuItem, len(tracks))
	for i, t := range tracks {
		items[i] = dbmsg.MenuItem{ParentID1: artistID, ParentID2: albumID, Label: t.Title, Kind: dbmsg.KindTitle, ChildID1: uint32(t.ID)}
	}
	return dbmsg.Menu(frame.TransactionID, items)
}

func (s *Server) metadataMenu(frame dbmsg.Frame) []byte {
	trackID := u32Arg(frame.Args, 2)
	track, err := s.library.Track(int64(trackID))
	if err != nil {
		s.logger.Printf("dbserver: metadata: %v", err)
		return dbmsg.Menu(frame.TransactionID, nil)
	}

	facets := []struct {
		label string
		kind  uint32
	}{
		{artistName(track.ArtistID, s.library), kindMetaArtist},
		{albumName(track.AlbumID, s.library), kindMetaAlbum},
		{track.Genre, kindMetaGenre},
		{track.Key, kindMetaKey},
		{fmt.Sprintf("%d", track.DurationSeconds), kindMetaLength},
		{fmt.Sprintf("%.1f", track.BPM), kindMetaBPM},
		{track.Comment, kindMetaComment},
		{fmt.Sprintf("%d", track.Rating), kindMetaRating},
		{track.Color, kindMetaColor},
	}
	items := make([]dbmsg.MenuItem, len(facets))
	for i, f := range facets {
		items[i] = dbmsg.MenuItem{ParentID1: trackID, Label: f.label, Kind: f.kind}
	}
	return dbmsg.Menu(frame.TransactionID, items)
}

func artistName(id int64, lib *librarydb.Library) string {
	artists, err := lib.Artists()
	if err != nil {
		return ""
	}
	for _, a := range artists {
		if a.ID == id {
			return a.Name
		}
	}
	return ""
}

func albumName(id int64, lib *librarydb.Library) string {
	albums, err := lib.Albums()
	if err != nil {
		return ""
	}
	for _, a := range albums {
		if a.ID == id {
			return a.Name
		}
	}
	return ""
}

func (s *Server) mountInfoMenu(frame dbmsg.Frame) []byte {
	item := dbmsg.MenuItem{Label: s.mountPath, Kind: kindMountPoint}
	return dbmsg.Menu(frame.TransactionID, []dbmsg.MenuItem{item})
}

func u32Arg(args []field.Field, index int) uint32 {
	if index >= len(args) || args[index].Kind != field.KindU32 {
		return 0
	}
	return args[index].U32
}
