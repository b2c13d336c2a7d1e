package model

import "time"

// 云盘状态。AttachedTo 有值当且仅当状态为 in-use。
const (
	VolumeStatusCreating  = "creating"
	VolumeStatusAvailable = "available"
	VolumeStatusInUse     = "in-use"
)

// Volume 云盘表,可独立创建并挂载到实例
type Volume struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	ProviderID *string   `gorm:"size:128;uniqueIndex:idx_volumes_provider_id" json:"provider_id,omitempty"`
	Name       string    `gorm:"size:128" json:"name"`
	Type       string    `gorm:"size:64" json:"type"`
	SizeGiB    int       `json:"size_gib"`
	Region     string    `gorm:"size:64" json:"region"`
	Zone       string    `gorm:"size:64" json:"zone"`
	Encrypted  bool      `gorm:"default:false" json:"encrypted"`
	AttachedTo *string   `gorm:"size:64;index:idx_volumes_attached_to" json:"attached_to,omitempty"`
	Device     string    `gorm:"size:64" json:"device,omitempty"`
	Status     string    `gorm:"size:32;not null" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Volume) TableName() string {
	return "volumes"
}

// Attached 判断云盘是否已挂载
func (v *Volume) Attached() bool {
	return v.AttachedTo != nil && *v.AttachedTo != ""
}

// HasProviderID 判断云盘是否已被云厂商确认
func (v *Volume) HasProviderID() bool {
	return v.ProviderID != nil && *v.ProviderID != ""
}

// CreateVolumeRequest 创建云盘请求
type CreateVolumeRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	SizeGiB   int    `json:"size_gib"`
	Region    string `json:"region"`
	Zone      string `json:"zone"`
	Encrypted bool   `json:"encrypted"`
}
