/*
Package mccontrol 通过RCON协议维护与Minecraft服务器的唯一控制台会话。

主要特性:

  - 控制台会话：延迟连接，传输错误时自动重连并重试一次，区分认证失败、命令过长等协议错误
  - 状态解析：支持 "list json"（结构化）与原版 "list"（纯文本）两种响应格式
  - 昵称审核：去除格式标签后检测代码块、链接、Discord邀请等违规内容
  - 控制循环：定期刷新状态消息，处理违规玩家，在无人在线时执行计划中的重启
  - 灵活部署：服务器地址可以固定，也可以通过Kubernetes标签动态查找Pod

此包依赖于github.com/xrjr/mcutils来实现RCON协议。

基本用法:

	session := mccontrol.NewSession(mccontrol.SessionConfig{
		Address:  mccontrol.StaticAddress("127.0.0.1:25575"),
		Password: "minecraft-password",
		Timeout:  10 * time.Second,
	})
	state := mccontrol.NewSharedState(session, nil)
	defer state.Close()

	// 执行命令
	response, err := state.Execute(ctx, "list")

	// 启动控制循环
	loop := mccontrol.NewControlLoop(state, renderer, store, mccontrol.LoopConfig{
		ChannelID: "status",
		Parser:    mccontrol.NewStatusParser(mccontrol.ModeStructured),
	})
	go loop.Run(ctx)

	// 安排重启，所有玩家下线后执行
	outcome := state.ScheduleRestart(false)
	fmt.Println(outcome.Message())

更多示例请参考 example_test.go。
*/
package mccontrol
