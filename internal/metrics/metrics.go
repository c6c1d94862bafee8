package metrics

import "expvar"

var (
	// Events 按事件名统计收到的推送
	Events = expvar.NewMap("xts_socket_events")
	// Connects 连接建立次数（含重连）
	Connects = expvar.NewInt("xts_socket_connects")
	// Disconnects 连接断开次数
	Disconnects = expvar.NewInt("xts_socket_disconnects")
	// SocketErrors connect_error 与 error 事件
	SocketErrors = expvar.NewInt("xts_socket_errors")
	// JournalWrites / JournalErrors 事件日志写入结果
	JournalWrites = expvar.NewInt("xts_journal_writes")
	JournalErrors = expvar.NewInt("xts_journal_errors")
)
