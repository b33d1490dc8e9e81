package port

type FileWalker interface {
	Expand(patterns []string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
