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
	volumeStatus     string
	volumeRegion     string
	volumeOutputType string
	volumeSync       bool
)

// queryVolumesCmd 查询云盘
var queryVolumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "查询云盘",
	Long:  `查询本地记录的云盘列表,支持按状态、区域过滤。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, volumes, err := buildServices()
		if err != nil {
			return err
		}

		var list []*model.Volume
		if volumeSync {
			list, err = volumes.SyncVolumes(context.Background())
		} else {
			list, err = volumes.List(&service.VolumeFilter{
				Status: volumeStatus,
				Region: volumeRegion,
			})
		}
		if err != nil {
			return fmt.Errorf("failed to list volumes: %w", err)
		}

		if volumeOutputType == "json" {
			data, err := json.MarshalIndent(list, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		// 使用 lipgloss/table 表格输出
		rows := [][]string{}
		for _, vol := range list {
			providerID := ""
			if vol.ProviderID != nil {
				providerID = *vol.ProviderID
			}
			attachedTo := ""
			if vol.AttachedTo != nil {
				attachedTo = *vol.AttachedTo
			}
			rows = append(rows, []string{
				vol.ID, providerID, vol.Name, fmt.Sprintf("%d GiB", vol.SizeGiB),
				vol.Region, vol.Status, attachedTo, vol.Device,
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
			Headers("ID", "Provider ID", "Name", "Size", "Region", "Status", "Attached To", "Device").
			Rows(rows...)

		fmt.Println(t)
		fmt.Println()
		logx.Info("Query completed, count %d", len(list))
		return nil
	},
}

func init() {
	queryVolumesCmd.Flags().StringVar(&volumeStatus, "status", "", "按状态过滤 (creating, available, in-use)")
	queryVolumesCmd.Flags().StringVar(&volumeRegion, "region", "", "按区域过滤")
	queryVolumesCmd.Flags().StringVarP(&volumeOutputType, "output", "o", "table", "输出格式 (table, json)")
	queryVolumesCmd.Flags().BoolVar(&volumeSync, "sync", false, "先执行一次全量同步")
	queryCmd.AddCommand(queryVolumesCmd)
}
