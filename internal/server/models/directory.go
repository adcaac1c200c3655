package models

// RootParentID is the parent id of top-level directories.
const RootParentID = "00000000-0000-0000-0000-000000000000"

// Directory is a node of the document tree. (Path, ParentID) is unique.
type Directory struct {
	ID            string `json:"id"`
	Path          string `json:"path"`
	ParentID      string `json:"parentId"`
	Owners        Grants `json:"owners"`
	PublicVisible bool   `json:"publicVisible"`
}

func (d *Directory) IsRoot() bool {
	return d.ParentID == RootParentID
}

// TreeNode is a directory with its visible subdirectories.
type TreeNode struct {
	Directory *Directory  `json:"directory"`
	Children  []*TreeNode `json:"children,omitempty"`
}
