package imcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/service"
)

// handleListInstances 处理列出实例的请求
func (s *MCPServer) handleListInstances(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		args = make(map[string]any)
	}

	status, _ := args["status"].(string)
	stack, _ := args["stack"].(string)
	region, _ := args["region"].(string)

	instances, err := s.instances.List(&service.ListFilter{
		Status: status,
		Stack:  stack,
		Region: region,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatInstances(instances)), nil
}

// handleGetInstance 处理获取实例详情的请求
func (s *MCPServer) handleGetInstance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	inst, err := s.instances.Resolve(ctx, id)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("未找到 ID 为 %s 的实例: %v", id, err)), nil
	}

	return mcp.NewToolResultText(formatInstances([]*model.Instance{inst})), nil
}

// handleInstallStatus 处理查询安装状态的请求
func (s *MCPServer) handleInstallStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	result, err := s.instances.GetInstallStatus(ctx, id)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("未找到 ID 为 %s 的实例: %v", id, err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("实例 %s 的安装状态: %s\n", result.InstanceID, result.Status))
	if result.Product != "" {
		sb.WriteString(fmt.Sprintf("安装产品: %s\n", result.Product))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListVolumes 处理列出云盘的请求
func (s *MCPServer) handleListVolumes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		args = make(map[string]any)
	}

	status, _ := args["status"].(string)
	region, _ := args["region"].(string)

	volumes, err := s.volumes.List(&service.VolumeFilter{
		Status: status,
		Region: region,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatVolumes(volumes)), nil
}

// formatInstances 格式化实例信息
func formatInstances(instances []*model.Instance) string {
	if len(instances) == 0 {
		return "未找到任何实例"
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("找到 %d 个实例:\n\n", len(instances)))

	for i, inst := range instances {
		result.WriteString(fmt.Sprintf("【实例 %d】\n", i+1))
		result.WriteString(fmt.Sprintf("  实例 ID: %s\n", inst.ID))
		if inst.ProviderID != nil {
			result.WriteString(fmt.Sprintf("  厂商实例 ID: %s\n", *inst.ProviderID))
		}
		result.WriteString(fmt.Sprintf("  实例名称: %s\n", inst.Name))
		result.WriteString(fmt.Sprintf("  区域: %s\n", inst.Region))
		result.WriteString(fmt.Sprintf("  可用区: %s\n", inst.Zone))
		result.WriteString(fmt.Sprintf("  实例规格: %s\n", inst.InstanceType))
		result.WriteString(fmt.Sprintf("  状态: %s\n", inst.Status))
		result.WriteString(fmt.Sprintf("  分组: %s\n", inst.Stack))

		if len(inst.PrivateIP) > 0 {
			result.WriteString(fmt.Sprintf("  私网 IP: %v\n", inst.PrivateIP))
		}
		if len(inst.PublicIP) > 0 {
			result.WriteString(fmt.Sprintf("  公网 IP: %v\n", inst.PublicIP))
		}
		if inst.Ephemeral {
			result.WriteString("  抢占式实例: 是\n")
		}

		result.WriteString(fmt.Sprintf("  启动时间: %s\n", inst.LaunchTime.Format("2006-01-02 15:04:05")))
		result.WriteString("\n")
	}

	return result.String()
}

// formatVolumes 格式化云盘信息
func formatVolumes(volumes []*model.Volume) string {
	if len(volumes) == 0 {
		return "未找到任何云盘"
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("找到 %d 个云盘:\n\n", len(volumes)))

	for i, vol := range volumes {
		result.WriteString(fmt.Sprintf("【云盘 %d】\n", i+1))
		result.WriteString(fmt.Sprintf("  云盘 ID: %s\n", vol.ID))
		if vol.ProviderID != nil {
			result.WriteString(fmt.Sprintf("  厂商云盘 ID: %s\n", *vol.ProviderID))
		}
		result.WriteString(fmt.Sprintf("  名称: %s\n", vol.Name))
		result.WriteString(fmt.Sprintf("  容量: %d GiB\n", vol.SizeGiB))
		result.WriteString(fmt.Sprintf("  状态: %s\n", vol.Status))
		if vol.AttachedTo != nil {
			result.WriteString(fmt.Sprintf("  挂载实例: %s\n", *vol.AttachedTo))
		}
		result.WriteString("\n")
	}

	return result.String()
}
