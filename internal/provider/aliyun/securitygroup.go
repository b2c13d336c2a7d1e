package aliyun

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cnb.cool/zhiqiangwang/pkg/logx"
	ecs "github.com/alibabacloud-go/ecs-20140526/v4/client"
	"github.com/alibabacloud-go/tea/tea"

	"github.com/opsre/zencloud/internal/provider"
)

// ListSecurityGroups 查询安全组列表,逐个补齐规则明细
func (c *Client) ListSecurityGroups(ctx context.Context) ([]*provider.SecurityGroup, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return nil, err
	}

	request := &ecs.DescribeSecurityGroupsRequest{
		RegionId: tea.String(c.Region),
		PageSize: tea.Int32(100),
	}

	response, err := ecsClient.DescribeSecurityGroups(request)
	if err != nil {
		return nil, fmt.Errorf("failed to describe security groups: %w", err)
	}

	if response.Body == nil || response.Body.SecurityGroups == nil {
		return []*provider.SecurityGroup{}, nil
	}

	groups := make([]*provider.SecurityGroup, 0, len(response.Body.SecurityGroups.SecurityGroup))
	for _, sg := range response.Body.SecurityGroups.SecurityGroup {
		group := &provider.SecurityGroup{
			ProviderID:  tea.StringValue(sg.SecurityGroupId),
			Name:        tea.StringValue(sg.SecurityGroupName),
			Description: tea.StringValue(sg.Description),
			Region:      c.Region,
		}

		rules, err := c.describeSecurityGroupRules(ecsClient, group.ProviderID)
		if err != nil {
			logx.Warn("Failed to describe rules for security group %s: %v", group.ProviderID, err)
		} else {
			group.Rules = rules
		}

		groups = append(groups, group)
	}

	logx.Info("Successfully queried Aliyun security groups, count %d, region %s", len(groups), c.Region)
	return groups, nil
}

// CreateSecurityGroup 创建安全组
func (c *Client) CreateSecurityGroup(ctx context.Context, name, description string) (string, error) {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return "", err
	}

	request := &ecs.CreateSecurityGroupRequest{
		RegionId:          tea.String(c.Region),
		SecurityGroupName: tea.String(name),
		Description:       tea.String(description),
	}

	response, err := ecsClient.CreateSecurityGroup(request)
	if err != nil {
		return "", fmt.Errorf("failed to create security group: %w", err)
	}
	if response.Body == nil || response.Body.SecurityGroupId == nil {
		return "", fmt.Errorf("create security group returned empty id")
	}

	groupID := tea.StringValue(response.Body.SecurityGroupId)
	logx.Info("Created Aliyun security group, group_id %s, name %s", groupID, name)
	return groupID, nil
}

// AuthorizeSecurityGroupRule 添加入方向规则
func (c *Client) AuthorizeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.AuthorizeSecurityGroupRequest{
		RegionId:        tea.String(c.Region),
		SecurityGroupId: tea.String(groupID),
		IpProtocol:      tea.String(rule.Protocol),
		PortRange:       tea.String(fmt.Sprintf("%d/%d", rule.FromPort, rule.ToPort)),
		SourceCidrIp:    tea.String(rule.Source),
	}
	if rule.Description != "" {
		request.Description = tea.String(rule.Description)
	}

	if _, err := ecsClient.AuthorizeSecurityGroup(request); err != nil {
		return fmt.Errorf("failed to authorize security group rule: %w", err)
	}

	logx.Info("Authorized Aliyun security group rule, group_id %s, %s %d-%d from %s",
		groupID, rule.Protocol, rule.FromPort, rule.ToPort, rule.Source)
	return nil
}

// RevokeSecurityGroupRule 移除入方向规则
func (c *Client) RevokeSecurityGroupRule(ctx context.Context, groupID string, rule *provider.SecurityGroupRule) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.RevokeSecurityGroupRequest{
		RegionId:        tea.String(c.Region),
		SecurityGroupId: tea.String(groupID),
		IpProtocol:      tea.String(rule.Protocol),
		PortRange:       tea.String(fmt.Sprintf("%d/%d", rule.FromPort, rule.ToPort)),
		SourceCidrIp:    tea.String(rule.Source),
	}

	if _, err := ecsClient.RevokeSecurityGroup(request); err != nil {
		return fmt.Errorf("failed to revoke security group rule: %w", err)
	}

	logx.Info("Revoked Aliyun security group rule, group_id %s", groupID)
	return nil
}

// DeleteSecurityGroup 删除安全组
func (c *Client) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	ecsClient, err := c.GetECSClient()
	if err != nil {
		return err
	}

	request := &ecs.DeleteSecurityGroupRequest{
		RegionId:        tea.String(c.Region),
		SecurityGroupId: tea.String(groupID),
	}

	if _, err := ecsClient.DeleteSecurityGroup(request); err != nil {
		return fmt.Errorf("failed to delete security group: %w", err)
	}

	logx.Info("Deleted Aliyun security group, group_id %s", groupID)
	return nil
}

// describeSecurityGroupRules 查询安全组入方向规则明细
func (c *Client) describeSecurityGroupRules(ecsClient *ecs.Client, groupID string) ([]provider.SecurityGroupRule, error) {
	request := &ecs.DescribeSecurityGroupAttributeRequest{
		RegionId:        tea.String(c.Region),
		SecurityGroupId: tea.String(groupID),
		Direction:       tea.String("ingress"),
	}

	response, err := ecsClient.DescribeSecurityGroupAttribute(request)
	if err != nil {
		return nil, err
	}

	if response.Body == nil || response.Body.Permissions == nil {
		return []provider.SecurityGroupRule{}, nil
	}

	rules := make([]provider.SecurityGroupRule, 0, len(response.Body.Permissions.Permission))
	for _, perm := range response.Body.Permissions.Permission {
		fromPort, toPort := parsePortRange(tea.StringValue(perm.PortRange))
		rules = append(rules, provider.SecurityGroupRule{
			Protocol:    strings.ToLower(tea.StringValue(perm.IpProtocol)),
			FromPort:    fromPort,
			ToPort:      toPort,
			Source:      tea.StringValue(perm.SourceCidrIp),
			Description: tea.StringValue(perm.Description),
		})
	}
	return rules, nil
}

// parsePortRange 解析 "80/443" 形式的端口区间
func parsePortRange(portRange string) (int, int) {
	parts := strings.SplitN(portRange, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	from, _ := strconv.Atoi(parts[0])
	to, _ := strconv.Atoi(parts[1])
	return from, to
}
