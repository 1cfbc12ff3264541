package domain

import (
	"strings"
	"unicode/utf8"
)

// RoomClass 是房间码的策略分类。
// 两个保留房间码驱动的特殊行为统一收敛到这个闭合枚举，
// 其他组件只消费分类结果，不再散落字符串比较。
type RoomClass int

const (
	// ClassNormal 普通房间：合法的 6 位房间码，受清理策略约束。
	ClassNormal RoomClass = iota
	// ClassPermanentVault 永久保管库：保留码，文件不会被清理，其余行为与普通房间一致。
	ClassPermanentVault
	// ClassAdminAggregator 管理员聚合房间：保留码，读取时聚合所有房间的文件，
	// 并且是唯一允许触发全局清空的房间码；同样不参与过期清理。
	ClassAdminAggregator
)

// 两个保留房间码。固定 5 位字面量，刻意落在 6 位普通码空间之外，
// 保证永远不会与临时房间码冲突。
const (
	PermanentVaultCode  = "VAULT"
	AdminAggregatorCode = "ADMIN"
)

// RoomCodeLength 是普通房间码要求的长度。保留码不受此约束。
const RoomCodeLength = 6

// NormalizeRoomCode 将房间码归一化为大写 (外部输入大小写不敏感)。
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Classify 返回房间码对应的策略分类。输入应已归一化。
func Classify(code string) RoomClass {
	switch code {
	case PermanentVaultCode:
		return ClassPermanentVault
	case AdminAggregatorCode:
		return ClassAdminAggregator
	default:
		return ClassNormal
	}
}

// ValidateRoomCode 校验房间码的语法：保留码直接放行，其余必须恰好 6 个字符。
// 按字符 (rune) 计数，不是字节。
func ValidateRoomCode(code string) bool {
	if Classify(code) != ClassNormal {
		return true
	}
	return utf8.RuneCountInString(code) == RoomCodeLength
}

// ExemptFromCleanup 报告该分类的房间是否豁免过期清理。
func (c RoomClass) ExemptFromCleanup() bool {
	return c == ClassPermanentVault || c == ClassAdminAggregator
}

func (c RoomClass) String() string {
	switch c {
	case ClassPermanentVault:
		return "permanent_vault"
	case ClassAdminAggregator:
		return "admin_aggregator"
	default:
		return "normal"
	}
}
