package model

import "time"

// 实例生命周期状态。create 请求先落一条 pending 记录,后台调用云厂商
// 成功后进入 running;terminate 之后记录保留为 terminated,不做物理删除。
const (
	InstanceStatusPending      = "pending"
	InstanceStatusInitializing = "initializing"
	InstanceStatusRunning      = "running"
	InstanceStatusStopping     = "stopping"
	InstanceStatusStopped      = "stopped"
	InstanceStatusTerminated   = "terminated"
)

// 工作负载画像,创建时显式声明,查询阶段不做任何推断
const (
	WorkloadGeneric   = "generic"
	WorkloadWeb       = "web"
	WorkloadWorker    = "worker"
	WorkloadDatabase  = "database"
	WorkloadContainer = "container"
)

// workloadProfiles 合法的工作负载画像取值
var workloadProfiles = map[string]bool{
	WorkloadGeneric:   true,
	WorkloadWeb:       true,
	WorkloadWorker:    true,
	WorkloadDatabase:  true,
	WorkloadContainer: true,
}

// ValidWorkloadProfile 判断工作负载画像取值是否合法
func ValidWorkloadProfile(p string) bool {
	return workloadProfiles[p]
}

// Instance 实例表,本地镜像一台云主机。
// ID 为本地生成的主键,ProviderID 为云厂商分配的实例 ID,
// 只有创建请求被云厂商确认后才会写入;两套 ID 均可用于检索。
type Instance struct {
	ID               string      `gorm:"primaryKey;size:64" json:"id"`
	ProviderID       *string     `gorm:"size:128;uniqueIndex:idx_instances_provider_id" json:"provider_id,omitempty"`
	Name             string      `gorm:"size:128;not null" json:"name"`
	InstanceType     string      `gorm:"size:64" json:"instance_type"`
	WorkloadProfile  string      `gorm:"size:32;default:generic" json:"workload_profile"`
	Status           string      `gorm:"size:32;not null;index:idx_instances_status" json:"status"`
	Region           string      `gorm:"size:64" json:"region"`
	Zone             string      `gorm:"size:64" json:"zone"`
	ImageID          string      `gorm:"size:128" json:"image_id,omitempty"`
	PublicIP         StringArray `gorm:"type:text" json:"public_ip"`
	PrivateIP        StringArray `gorm:"type:text" json:"private_ip"`
	KeyPairName      string      `gorm:"size:128" json:"key_pair_name,omitempty"`
	VolumeIDs        StringArray `gorm:"type:text" json:"volume_ids"`
	SecurityGroupIDs StringArray `gorm:"type:text" json:"security_group_ids"`
	Ephemeral        bool        `gorm:"default:false" json:"ephemeral"`
	Tags             TagMap      `gorm:"type:text" json:"tags"`
	Stack            string      `gorm:"size:128;index:idx_instances_stack" json:"stack"`
	LaunchTime       time.Time   `json:"launch_time"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName 指定表名
func (Instance) TableName() string {
	return "instances"
}

// HasProviderID 判断实例是否已被云厂商确认
func (i *Instance) HasProviderID() bool {
	return i.ProviderID != nil && *i.ProviderID != ""
}

// InstallRequested 判断实例是否请求过软件安装
func (i *Instance) InstallRequested() bool {
	return i.Tags[TagInstallRequested] == "true"
}

// InstallCompleted 判断安装完成回执是否已写入
func (i *Instance) InstallCompleted() bool {
	return i.Tags[TagInstallCompleted] == "true"
}

// InstallProduct 返回请求安装的软件标识
func (i *Instance) InstallProduct() string {
	return i.Tags[TagInstallProduct]
}

// InstanceList 实例列表
type InstanceList struct {
	Items    []*Instance `json:"items"`
	PageInfo *PageInfo   `json:"page_info,omitempty"`
}

// CreateInstanceRequest 创建实例请求
type CreateInstanceRequest struct {
	Name             string            `json:"name"`
	InstanceType     string            `json:"instance_type"`
	Region           string            `json:"region"`
	Zone             string            `json:"zone"`
	ImageID          string            `json:"image_id"`
	KeyPairName      string            `json:"key_pair_name"`
	SecurityGroupIDs []string          `json:"security_group_ids"`
	WorkloadProfile  string            `json:"workload_profile"`
	Stack            string            `json:"stack"`
	Ephemeral        bool              `json:"ephemeral"`
	InstallRequested bool              `json:"install_requested"`
	InstallProduct   string            `json:"install_product"`
	Tags             map[string]string `json:"tags"`
}
