package detection

// DNNConfig points at an OpenCV-readable detection network
type DNNConfig struct {
	ModelPath  string
	ConfigPath string
	InputSize  int
	// Classes restricts candidates to these class ids; empty keeps all
	Classes []int
}
