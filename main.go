package main

import "github.com/huanfeng/apkdeploy-cli/cmd"

func main() {
	cmd.Execute()
}
