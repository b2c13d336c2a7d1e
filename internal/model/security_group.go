package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SecurityGroupRule 安全组入方向规则。
// 规则的身份由 (Protocol, FromPort, ToPort, Source) 四元组唯一确定,
// 同一安全组内不允许存在身份相同的两条规则。
type SecurityGroupRule struct {
	Protocol    string `json:"protocol"`
	FromPort    int    `json:"from_port"`
	ToPort      int    `json:"to_port"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
}

// Key 返回规则的身份四元组
func (r SecurityGroupRule) Key() string {
	return fmt.Sprintf("%s|%d|%d|%s", strings.ToLower(r.Protocol), r.FromPort, r.ToPort, r.Source)
}

// RuleList 规则列表类型,以 JSON 文本存储在单列中,保持插入顺序
type RuleList []SecurityGroupRule

// Scan 实现 sql.Scanner 接口
func (rl *RuleList) Scan(value interface{}) error {
	if value == nil {
		*rl = RuleList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal RuleList value: %v", value)
	}

	if len(bytes) == 0 {
		*rl = RuleList{}
		return nil
	}

	return json.Unmarshal(bytes, rl)
}

// Value 实现 driver.Valuer 接口
func (rl RuleList) Value() (driver.Value, error) {
	if len(rl) == 0 {
		return "[]", nil
	}
	return json.Marshal(rl)
}

// Contains 判断列表中是否已存在身份相同的规则
func (rl RuleList) Contains(rule SecurityGroupRule) bool {
	key := rule.Key()
	for _, r := range rl {
		if r.Key() == key {
			return true
		}
	}
	return false
}

// Remove 返回去掉指定身份规则后的新列表
func (rl RuleList) Remove(rule SecurityGroupRule) RuleList {
	key := rule.Key()
	out := make(RuleList, 0, len(rl))
	for _, r := range rl {
		if r.Key() != key {
			out = append(out, r)
		}
	}
	return out
}

// SecurityGroup 安全组表
type SecurityGroup struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	ProviderID  *string   `gorm:"size:128;uniqueIndex:idx_security_groups_provider_id" json:"provider_id,omitempty"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"size:256" json:"description"`
	Region      string    `gorm:"size:64" json:"region"`
	Rules       RuleList  `gorm:"type:text" json:"rules"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SecurityGroup) TableName() string {
	return "security_groups"
}

// HasProviderID 判断安全组是否已被云厂商确认
func (sg *SecurityGroup) HasProviderID() bool {
	return sg.ProviderID != nil && *sg.ProviderID != ""
}

// CreateSecurityGroupRequest 创建安全组请求
type CreateSecurityGroupRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Region      string              `json:"region"`
	Rules       []SecurityGroupRule `json:"rules"`
}
