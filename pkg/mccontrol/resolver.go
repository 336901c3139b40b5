package mccontrol

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultPodRefreshInterval Pod信息缓存的默认有效期
const DefaultPodRefreshInterval = 5 * time.Minute

// K8sConfig 包含Kubernetes配置选项
type K8sConfig struct {
	// 连接配置

	RunMode        string // 运行模式：InCluster（集群内）或OutOfCluster（集群外）
	KubeconfigPath string // 当RunMode为OutOfCluster时使用的kubeconfig文件路径
	Namespace      string // 命名空间

	// 资源选择器

	PodLabelSelector string // 用于选择Pod的标签（如app=minecraft）
}

// NewKubernetesClient 根据运行模式创建K8s客户端
func NewKubernetesClient(config K8sConfig) (kubernetes.Interface, error) {
	var k8sConfig *rest.Config
	var err error

	if config.RunMode == "InCluster" {
		k8sConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("获取集群内部配置失败: %w", err)
		}
	} else {
		// 使用指定的kubeconfig或默认位置
		kubeconfigPath := config.KubeconfigPath
		if kubeconfigPath == "" {
			homeDir, _ := os.UserHomeDir()
			kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
		}

		k8sConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("加载kubeconfig失败: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		return nil, fmt.Errorf("创建K8s客户端失败: %w", err)
	}
	return clientset, nil
}

// PodResolver 通过标签查找Minecraft服务器所在的Pod，返回 podIP:rconPort
//
// 查询结果会缓存一段时间；会话出现传输错误后重新连接时强制刷新，
// 以便跟上Pod的重建和迁移。
type PodResolver struct {
	clientset kubernetes.Interface
	namespace string
	selector  string
	rconPort  int

	mu          sync.Mutex
	interval    time.Duration // 缓存有效期
	podName     string        // 当前选中的Pod名称
	addr        string        // 缓存的地址
	lastRefresh time.Time     // 上次查询时间
}

// NewPodResolver 创建Pod地址解析器
func NewPodResolver(clientset kubernetes.Interface, config K8sConfig, rconPort int) *PodResolver {
	if rconPort <= 0 {
		rconPort = DefaultRconPort
	}
	return &PodResolver{
		clientset: clientset,
		namespace: config.Namespace,
		selector:  config.PodLabelSelector,
		rconPort:  rconPort,
		interval:  DefaultPodRefreshInterval,
	}
}

// SetRefreshInterval 设置Pod信息缓存的有效期
func (r *PodResolver) SetRefreshInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPodRefreshInterval
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = interval
}

// PodName 返回当前选中的Pod名称
func (r *PodResolver) PodName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.podName
}

// Resolve 实现 AddressResolver
func (r *PodResolver) Resolve(ctx context.Context, refresh bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !refresh && r.addr != "" && time.Since(r.lastRefresh) < r.interval {
		return r.addr, nil
	}

	pod, err := r.selectPod(ctx)
	if err != nil {
		return "", err
	}
	if pod.Status.PodIP == "" {
		return "", fmt.Errorf("Pod %s 尚未分配IP", pod.Name)
	}

	r.podName = pod.Name
	r.addr = net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(r.rconPort))
	r.lastRefresh = time.Now()
	return r.addr, nil
}

// selectPod 选择第一个Running状态的Pod，如果没有则选最近成功运行过的Pod，还没有就选第一个
func (r *PodResolver) selectPod(ctx context.Context) (*corev1.Pod, error) {
	pods, err := r.clientset.CoreV1().Pods(r.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: r.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("获取Pod列表失败: %w", err)
	}

	if len(pods.Items) == 0 {
		return nil, fmt.Errorf("未找到匹配标签 '%s' 的Pod", r.selector)
	}

	var latestSucceeded *corev1.Pod
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Status.Phase == corev1.PodRunning {
			return pod, nil
		}
		if pod.Status.Phase == corev1.PodSucceeded && pod.Status.StartTime != nil {
			if latestSucceeded == nil || pod.Status.StartTime.After(latestSucceeded.Status.StartTime.Time) {
				latestSucceeded = pod
			}
		}
	}

	if latestSucceeded != nil {
		return latestSucceeded, nil
	}
	return &pods.Items[0], nil
}
