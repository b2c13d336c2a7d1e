package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/opsre/zencloud/internal/model"
	"github.com/opsre/zencloud/internal/service"
)

var (
	instanceStatus     string
	instanceStack      string
	instanceRegion     string
	instanceOutputType string
	instanceSync       bool
)

// queryInstancesCmd 查询实例
var queryInstancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "查询实例",
	Long:  `查询本地记录的实例列表,支持按状态、分组、区域过滤。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		instances, _, err := buildServices()
		if err != nil {
			return err
		}

		var list []*model.Instance
		if instanceSync {
			list, err = instances.ListCurrent(context.Background())
		} else {
			list, err = instances.List(&service.ListFilter{
				Status: instanceStatus,
				Stack:  instanceStack,
				Region: instanceRegion,
			})
		}
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		if instanceOutputType == "json" {
			data, err := json.MarshalIndent(list, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		// 使用 lipgloss/table 表格输出
		rows := [][]string{}
		for _, inst := range list {
			providerID := ""
			if inst.ProviderID != nil {
				providerID = *inst.ProviderID
			}
			privateIP := ""
			if len(inst.PrivateIP) > 0 {
				privateIP = inst.PrivateIP[0]
			}
			publicIP := ""
			if len(inst.PublicIP) > 0 {
				publicIP = inst.PublicIP[0]
			}
			rows = append(rows, []string{
				inst.ID, providerID, inst.Name, inst.Region, inst.Status,
				inst.InstanceType, inst.Stack, privateIP, publicIP,
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
			Headers("ID", "Provider ID", "Name", "Region", "Status", "Instance Type", "Stack", "Private IP", "Public IP").
			Rows(rows...)

		fmt.Println(t)
		fmt.Println()
		logx.Info("Query completed, count %d", len(list))
		return nil
	},
}

func init() {
	queryInstancesCmd.Flags().StringVar(&instanceStatus, "status", "", "按状态过滤 (pending, running, stopped, terminated)")
	queryInstancesCmd.Flags().StringVar(&instanceStack, "stack", "", "按分组过滤")
	queryInstancesCmd.Flags().StringVar(&instanceRegion, "region", "", "按区域过滤")
	queryInstancesCmd.Flags().StringVarP(&instanceOutputType, "output", "o", "table", "输出格式 (table, json)")
	queryInstancesCmd.Flags().BoolVar(&instanceSync, "sync", false, "先执行一次全量同步")
	queryCmd.AddCommand(queryInstancesCmd)
}
