package model

// 本地维护的保留标签键。云厂商侧不认识这些键,全量同步时如果直接以
// 远端标签覆盖本地标签,这几个键就会被抹掉,因此合并时本地值优先。
const (
	// TagInstallRequested 该实例是否请求过软件安装,值为 "true"/"false"
	TagInstallRequested = "zencloud:install:requested"
	// TagInstallProduct 请求安装的软件标识
	TagInstallProduct = "zencloud:install:product"
	// TagInstallCompleted 安装完成回执,值为 "true"
	TagInstallCompleted = "zencloud:install:completed"
)

// reservedTagKeys 合并策略的保留键清单
var reservedTagKeys = []string{
	TagInstallRequested,
	TagInstallProduct,
	TagInstallCompleted,
}

// ReservedTagKeys 返回保留键清单的拷贝
func ReservedTagKeys() []string {
	out := make([]string, len(reservedTagKeys))
	copy(out, reservedTagKeys)
	return out
}

// IsReservedTagKey 判断是否为本地维护的保留键
func IsReservedTagKey(key string) bool {
	for _, k := range reservedTagKeys {
		if k == key {
			return true
		}
	}
	return false
}

// MergeTags 合并远端上报的标签和本地存储的标签,返回应持久化的结果。
// 远端标签对所有普通键是权威的;保留键上如果本地已有值则本地优先。
// 合并满足幂等性: MergeTags(MergeTags(local, remote), remote) 与
// MergeTags(local, remote) 结果一致。首次导入不走合并,直接复制远端标签。
func MergeTags(local, remote TagMap) TagMap {
	merged := remote.Clone()
	if merged == nil {
		merged = TagMap{}
	}
	for _, key := range reservedTagKeys {
		if v, ok := local[key]; ok {
			merged[key] = v
		}
	}
	return merged
}
