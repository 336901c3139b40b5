package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"city.newnan/mc-console/pkg/mccontrol"
)

// CLI选项
type cliOptions struct {
	// Minecraft服务器配置
	addr         string
	rconPassword string
	timeout      time.Duration
	listJSON     bool

	// K8s配置选项，mode 为空时直接连接 addr
	runMode          string
	kubeconfigPath   string
	namespace        string
	podLabelSelector string
	rconPort         int

	// CLI配置
	watch          time.Duration
	placeholder    string
	enableColor    bool
	executeCommand string
}

// CLI颜色设置
var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgBlue)
	promptColor  = color.New(color.FgCyan, color.Bold)
)

func main() {
	// 解析命令行参数
	options := parseFlags()
	color.NoColor = !options.enableColor

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver, err := createResolver(options)
	if err != nil {
		errorColor.Fprintf(os.Stderr, "初始化RCON地址解析失败: %v\n", err)
		os.Exit(1)
	}

	session := mccontrol.NewSession(mccontrol.SessionConfig{
		Address:  resolver,
		Password: options.rconPassword,
		Timeout:  options.timeout,
	})
	state := mccontrol.NewSharedState(session, nil)
	defer state.Close()

	console := newConsole(state, options)

	// 单条命令模式
	if options.executeCommand != "" {
		if !console.execute(ctx, options.executeCommand) {
			os.Exit(1)
		}
		return
	}

	if options.watch > 0 {
		console.startWatch(ctx, options.watch)
	}

	console.printStatus(ctx)
	console.repl(ctx, os.Stdin)
}

// parseFlags 解析命令行参数
func parseFlags() cliOptions {
	options := cliOptions{}

	// Minecraft服务器配置
	pflag.StringVarP(&options.addr, "addr", "a", "127.0.0.1:25575", "RCON 地址 (host:port)")
	pflag.StringVarP(&options.rconPassword, "rcon-password", "p", os.Getenv("RCON_PASS"), "RCON 密码，为空时从终端读取")
	pflag.DurationVar(&options.timeout, "timeout", 10*time.Second, "单条命令超时")
	pflag.BoolVar(&options.listJSON, "list-json", false, "服务器支持 \"list json\"")

	// K8s配置选项
	pflag.StringVar(&options.runMode, "mode", "", "K8s 运行模式 (InCluster 或 OutOfCluster)，为空时直接连接 --addr")
	pflag.StringVar(&options.kubeconfigPath, "kubeconfig", "", "kubeconfig 文件路径 (默认为 ~/.kube/config)")
	pflag.StringVar(&options.namespace, "namespace", "default", "Kubernetes 命名空间")
	pflag.StringVar(&options.podLabelSelector, "pod-selector", "app=minecraft", "Pod 标签选择器")
	pflag.IntVar(&options.rconPort, "rcon-port", mccontrol.DefaultRconPort, "K8s 模式下的 RCON 端口")

	// CLI配置
	pflag.DurationVarP(&options.watch, "watch", "w", 0, "按该间隔运行状态轮询并打印状态，0表示不运行")
	pflag.StringVar(&options.placeholder, "placeholder", "", "违规昵称的替换文本")
	pflag.BoolVar(&options.enableColor, "color", isatty.IsTerminal(os.Stdout.Fd()), "启用彩色输出")
	pflag.StringVarP(&options.executeCommand, "command", "c", "", "执行一条命令后退出")

	pflag.Parse()

	if options.rconPassword == "" {
		password, err := readPassword()
		if err != nil || password == "" {
			fmt.Println("错误: 必须提供 RCON 密码")
			pflag.Usage()
			os.Exit(1)
		}
		options.rconPassword = password
	}

	return options
}

// readPassword 从终端读取密码，不回显
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("标准输入不是终端")
	}
	promptColor.Print("RCON 密码: ")
	password, err := term.ReadPassword(fd)
	fmt.Println()
	return string(password), err
}

// createResolver 根据运行模式选择RCON地址来源
func createResolver(options cliOptions) (mccontrol.AddressResolver, error) {
	if options.runMode == "" {
		return mccontrol.StaticAddress(options.addr), nil
	}

	k8sConfig := mccontrol.K8sConfig{
		RunMode:          options.runMode,
		KubeconfigPath:   options.kubeconfigPath,
		Namespace:        options.namespace,
		PodLabelSelector: options.podLabelSelector,
	}
	clientset, err := mccontrol.NewKubernetesClient(k8sConfig)
	if err != nil {
		return nil, err
	}
	return mccontrol.NewPodResolver(clientset, k8sConfig, options.rconPort), nil
}
