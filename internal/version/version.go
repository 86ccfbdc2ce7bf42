// 包 version：构建期注入的版本信息，用于日志与出站请求标识
package version

// 通过 -ldflags "-X daycare-map/internal/version.Commit=..." 注入
var (
	Version = "1.0"
	Commit  = "dev"
)
