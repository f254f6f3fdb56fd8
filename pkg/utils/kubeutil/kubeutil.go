package kubeutil

import (
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Connect builds a *kubernetes.Clientset.
//
// It searches kubeconfig from, in increasing priority,
//
// - `~/.kube/config`
//
// - environment variable `KUBECONFIG`
//
// - the kubeconfig argument
//
// When no file is found from the above, it tries the in-cluster config.
func Connect(kubeconfig string) (*kubernetes.Clientset, error) {

	candidate := ""
	if home := homedir.HomeDir(); home != "" {
		candidate = filepath.Join(home, ".kube", "config")
	}
	if k := os.Getenv("KUBECONFIG"); k != "" {
		candidate = k
	}
	if kubeconfig != "" {
		candidate = kubeconfig
	}

	if candidate != "" {
		stat, err := os.Stat(candidate)
		if os.IsNotExist(err) || (err == nil && stat.IsDir()) {
			candidate = ""
		}
	}

	var config *rest.Config
	var err error
	if candidate == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", candidate)
	}
	if err != nil {
		return nil, err
	}

	return kubernetes.NewForConfig(config)
}
