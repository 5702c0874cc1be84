package exfs

import (
	"strings"
)

// Paths arriving from the bridge are absolute within the file system and
// start with '/'. Splitting skips empty components, so "//a///b" and "/a/b"
// resolve identically.

// splitPath breaks an absolute path into its components.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	components := parts[:0]
	for _, part := range parts {
		if part != "" {
			components = append(components, part)
		}
	}
	return components
}

// SplitLastComponent returns the leaf name of the path, truncated to the
// on-disk name field.
func SplitLastComponent(path string) string {
	components := splitPath(path)
	if len(components) == 0 {
		return "/"
	}
	leaf := components[len(components)-1]
	if len(leaf) > NameMax-1 {
		leaf = leaf[:NameMax-1]
	}
	return leaf
}

// resolvePath walks the directory tree from the root to the inode named by
// the path. The root path resolves to the root inode.
func (fs *FileSystem) resolvePath(path string) (Inumber, error) {
	current := RootInumber
	for _, component := range splitPath(path) {
		node := fs.readInode(current)
		next, err := fs.lookupDentry(node, component)
		if err != nil {
			return 0, err
		}
		current = next
	}
	return current, nil
}

// resolveParent walks to the parent of the path's final component, for
// operations that create or remove the leaf. For single-component paths the
// parent is the root.
func (fs *FileSystem) resolveParent(path string) (Inumber, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return RootInumber, nil
	}

	current := RootInumber
	for _, component := range components[:len(components)-1] {
		node := fs.readInode(current)
		next, err := fs.lookupDentry(node, component)
		if err != nil {
			return 0, err
		}
		current = next
	}
	return current, nil
}
