package amazon

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// Client AWS 客户端
type Client struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	ec2Client       *ec2.Client
}

// NewClient 创建 AWS 客户端
func NewClient(accessKeyID, secretAccessKey, region string) (*Client, error) {
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("access key id or secret is empty")
	}

	if region == "" {
		region = "us-east-1" // 默认区域
	}

	return &Client{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		Region:          region,
	}, nil
}

// GetEC2Client 获取 EC2 客户端
func (c *Client) GetEC2Client(ctx context.Context) (*ec2.Client, error) {
	if c.ec2Client != nil {
		return c.ec2Client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c.ec2Client = ec2.NewFromConfig(cfg)
	return c.ec2Client, nil
}
