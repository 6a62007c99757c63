package ndsrom

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MaxNameLength is the longest a single path component may be.
const MaxNameLength = 127

// rootDirID is the directory ID of the filename table's root.
const rootDirID = 0xF000

// dirTableRecordLength is the size in bytes of one directory table record.
const dirTableRecordLength = 8

// dirNode is the intermediate tree representation of the directory
// structure, built and walked while encoding (decoding walks the stored
// directory records directly and does not build it). Each node is
// either a directory (non-nil children) or a file leaf (fileID set).
type dirNode struct {
	name     string
	isDir    bool
	children map[string]*dirNode // only populated for directories
	fileID   uint32              // only meaningful for files
	leaf     bool                // true once this node is known to be a file

	// populated during directory-ID / sub-table assignment
	dirID        int
	parentDirID  int
	firstFileID  uint32
	subTableByte []byte
}

// GetFilenameIDMap decodes the FNT region into a path -> file ID mapping.
// fatCount bounds the file IDs a file entry may legally carry. File IDs
// are taken verbatim from the stored table; they are not reassigned.
func GetFilenameIDMap(fnt []byte, fatCount int) (map[string]uint32, error) {
	if len(fnt) < dirTableRecordLength {
		return nil, newErr(MalformedFNT, "FNT region too small to hold the root directory record")
	}

	rootSubOff := binary.LittleEndian.Uint32(fnt[0:4])
	dirCount := int(binary.LittleEndian.Uint16(fnt[6:8]))
	if dirCount < 1 {
		return nil, newErr(MalformedFNT, "root directory record reports %d directories", dirCount)
	}
	if len(fnt) < dirCount*dirTableRecordLength {
		return nil, newErr(MalformedFNT, "FNT directory table truncated: need %d records, have %d bytes",
			dirCount, len(fnt))
	}

	type dirRecord struct {
		subTableOffset uint32
		firstFileID    uint16
	}
	records := make([]dirRecord, dirCount)
	records[0] = dirRecord{subTableOffset: rootSubOff, firstFileID: uint16(binary.LittleEndian.Uint16(fnt[4:6]))}
	for i := 1; i < dirCount; i++ {
		off := i * dirTableRecordLength
		records[i] = dirRecord{
			subTableOffset: binary.LittleEndian.Uint32(fnt[off : off+4]),
			firstFileID:    binary.LittleEndian.Uint16(fnt[off+4 : off+6]),
		}
	}

	result := make(map[string]uint32)

	var walk func(dirIndex int, parentPath string) error
	walk = func(dirIndex int, parentPath string) error {
		pos := int(records[dirIndex].subTableOffset)
		fileID := uint32(records[dirIndex].firstFileID)
		for {
			if pos >= len(fnt) {
				return newErr(MalformedFNT, "unterminated sub-table for directory %d", dirIndex)
			}
			t := fnt[pos]
			pos++
			if t == 0 {
				return nil
			}
			isSubdir := t&0x80 != 0
			nameLen := int(t & 0x7F)
			if pos+nameLen > len(fnt) {
				return newErr(MalformedFNT, "name of length %d at offset %d exceeds FNT region", nameLen, pos)
			}
			name := fnt[pos : pos+nameLen]
			for _, c := range name {
				if c == 0x00 || c == '/' {
					return newErr(MalformedFNT, "entry name contains forbidden byte %#x", c)
				}
			}
			pos += nameLen
			fullPath := parentPath + "/" + string(name)

			if !isSubdir {
				if fileID >= uint32(fatCount) {
					return newErr(MalformedFNT, "file id %d for %q exceeds FAT entry count %d", fileID, fullPath, fatCount)
				}
				result[fullPath] = fileID
				fileID++
				continue
			}

			if pos+2 > len(fnt) {
				return newErr(MalformedFNT, "subdirectory entry %q missing directory id", fullPath)
			}
			subDirID := binary.LittleEndian.Uint16(fnt[pos : pos+2])
			pos += 2
			if subDirID < rootDirID {
				return newErr(MalformedFNT, "subdirectory id %#x for %q is out of range", subDirID, fullPath)
			}
			subIdx := int(subDirID - rootDirID)
			if subIdx >= dirCount {
				return newErr(MalformedFNT, "subdirectory id %#x for %q exceeds directory count %d", subDirID, fullPath, dirCount)
			}
			if err := walk(subIdx, fullPath); err != nil {
				return err
			}
		}
	}

	if err := walk(0, ""); err != nil {
		return nil, err
	}
	return result, nil
}

// splitPath validates and splits an absolute path into components.
func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, newErr(InvalidPath, "path %q must be absolute (start with '/')", path)
	}
	parts := strings.Split(path[1:], "/")
	if len(parts) == 0 {
		return nil, newErr(InvalidPath, "path %q has no components", path)
	}
	for _, p := range parts {
		if p == "" {
			return nil, newErr(InvalidPath, "path %q has an empty component", path)
		}
		if len(p) > MaxNameLength {
			return nil, newErr(NameTooLong, "path component %q in %q exceeds %d bytes", p, path, MaxNameLength)
		}
		for i := 0; i < len(p); i++ {
			if p[i] == 0x00 {
				return nil, newErr(InvalidPath, "path component %q contains a NUL byte", p)
			}
		}
	}
	return parts, nil
}

// buildDirTree inserts every path into a directory tree rooted at the
// returned node, collecting every InvalidPath/NameTooLong (from splitPath)
// and DuplicatePath violation across the whole set into one aggregated
// error rather than failing on the first one found. A path that cannot be
// inserted is skipped so the rest of the set is still checked.
func buildDirTree(paths []string) (*dirNode, error) {
	root := &dirNode{name: "", isDir: true, children: map[string]*dirNode{}}
	var merr *multierror.Error

	for _, path := range paths {
		parts, err := splitPath(path)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		cur := root
		for i, part := range parts {
			last := i == len(parts)-1
			child, ok := cur.children[part]
			if !ok {
				child = &dirNode{name: part}
				cur.children[part] = child
			}
			if last {
				if child.isDir {
					merr = multierror.Append(merr, newErr(DuplicatePath, "path %q collides with an existing directory of the same name", path))
					break
				}
				if child.leaf {
					merr = multierror.Append(merr, newErr(DuplicatePath, "duplicate path %q", path))
					break
				}
				child.leaf = true
			} else {
				if !ok {
					child.isDir = true
					child.children = map[string]*dirNode{}
				} else if !child.isDir {
					merr = multierror.Append(merr, newErr(DuplicatePath, "path %q treats file %q as a directory", path, part))
					break
				}
				cur = child
			}
		}
	}

	return root, foldMultierror(merr)
}

// ConstructFNTB builds the FNT region from a set of absolute leaf-file
// paths, assigning file IDs depth-first pre-order starting at
// fileIDOffset, consecutive within each directory. It returns the
// serialised FNT bytes and the resulting path -> file ID mapping.
func ConstructFNTB(paths []string, fileIDOffset uint32) ([]byte, map[string]uint32, error) {
	root, err := buildDirTree(paths)
	if err != nil {
		return nil, nil, err
	}

	// Assign directory IDs depth-first pre-order.
	nextDirID := rootDirID
	var dirsByID []*dirNode
	var assignDirIDs func(n *dirNode, parentID int)
	assignDirIDs = func(n *dirNode, parentID int) {
		n.dirID = nextDirID
		n.parentDirID = parentID
		dirsByID = append(dirsByID, n)
		nextDirID++
		for _, name := range sortedChildNames(n) {
			c := n.children[name]
			if c.isDir {
				assignDirIDs(c, n.dirID)
			}
		}
	}
	assignDirIDs(root, rootDirID)

	// Assign file IDs depth-first pre-order, consecutive within each
	// directory: files of a directory are numbered before recursing into
	// its subdirectories.
	pathToID := make(map[string]uint32)
	counter := fileIDOffset
	var assignFileIDs func(n *dirNode, path string)
	assignFileIDs = func(n *dirNode, path string) {
		n.firstFileID = counter
		for _, name := range sortedChildNames(n) {
			c := n.children[name]
			if !c.isDir {
				c.fileID = counter
				pathToID[path+"/"+name] = counter
				counter++
			}
		}
		for _, name := range sortedChildNames(n) {
			c := n.children[name]
			if c.isDir {
				assignFileIDs(c, path+"/"+name)
			}
		}
	}
	assignFileIDs(root, "")

	// Build each directory's sub-table bytes.
	for _, n := range dirsByID {
		var tbl []byte
		for _, name := range sortedChildNames(n) {
			c := n.children[name]
			if c.isDir {
				tbl = append(tbl, byte(0x80|len(name)))
				tbl = append(tbl, []byte(name)...)
				id := make([]byte, 2)
				binary.LittleEndian.PutUint16(id, uint16(c.dirID))
				tbl = append(tbl, id...)
			} else {
				tbl = append(tbl, byte(len(name)))
				tbl = append(tbl, []byte(name)...)
			}
		}
		tbl = append(tbl, 0x00)
		n.subTableByte = tbl
	}

	// Lay out: directory table (fixed size) followed by sub-tables in
	// directory-ID order.
	tableSize := uint32(len(dirsByID) * dirTableRecordLength)
	offsets := make([]uint32, len(dirsByID))
	cum := tableSize
	for i, n := range dirsByID {
		offsets[i] = cum
		cum += uint32(len(n.subTableByte))
	}

	out := make([]byte, tableSize)
	for i, n := range dirsByID {
		rec := out[i*dirTableRecordLength : (i+1)*dirTableRecordLength]
		binary.LittleEndian.PutUint32(rec[0:4], offsets[i])
		binary.LittleEndian.PutUint16(rec[4:6], uint16(n.firstFileID))
		if i == 0 {
			binary.LittleEndian.PutUint16(rec[6:8], uint16(len(dirsByID)))
		} else {
			binary.LittleEndian.PutUint16(rec[6:8], uint16(n.parentDirID))
		}
	}
	for _, n := range dirsByID {
		out = append(out, n.subTableByte...)
	}

	return out, pathToID, nil
}

func sortedChildNames(n *dirNode) []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
