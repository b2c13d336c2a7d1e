package model

// Region 云厂商区域
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstanceTypeInfo 实例规格
type InstanceTypeInfo struct {
	ID       string `json:"id"`
	Family   string `json:"family,omitempty"`
	CPU      int    `json:"cpu"`
	MemoryMB int    `json:"memory_mb"`
}

// KeyPair 密钥对
type KeyPair struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint,omitempty"`
}
