// The txcore command inspects recorded transaction databases and runs a
// small demonstration workload through a full agent.
package main

func main() {
	Execute()
}
