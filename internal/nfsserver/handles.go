package nfsserver

import "container/list"

// openFile is the per-task record kept for an inode exposed through a file
// handle: enough to answer GETATTR and READ without re-touching the
// filesystem resolution logic.
type openFile struct {
	ino  uint64
	path string
	dir  bool
}

// handleTable is the per-task "inode → open file" map from §4.9, capped at
// maxHandles entries with least-recently-used eviction.
type handleTable struct {
	cap     int
	entries map[uint64]*list.Element
	order   *list.List // front = most recently used
}

const maxHandles = 1024

func newHandleTable() *handleTable {
	return &handleTable{
		cap:     maxHandles,
		entries: make(map[uint64]*list.Element),
		order:   list.New(),
	}
}

func (t *handleTable) put(f openFile) {
	if el, ok := t.entries[f.ino]; ok {
		el.Value = f
		t.order.MoveToFront(el)
		return
	}
	el := t.order.PushFront(f)
	t.entries[f.ino] = el
	if t.order.Len() > t.cap {
		oldest := t.order.Back()
		if oldest != nil {
			t.order.Remove(oldest)
			delete(t.entries, oldest.Value.(openFile).ino)
		}
	}
}

func (t *handleTable) get(ino uint64) (openFile, bool) {
	el, ok := t.entries[ino]
	if !ok {
		return openFile{}, false
	}
	t.order.MoveToFront(el)
	return el.Value.(openFile), true
}
