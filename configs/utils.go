package configs

import (
	"fmt"
	"github.com/goccy/go-json"
	"log"
	"time"
)

func TxnPrint(tid string, format string, a ...interface{}) {
	if ShowDebugInfo {
		if !LogToFile {
			fmt.Printf(time.Now().Format("15:04:05.00")+" <---> "+"TXN"+tid+":"+format+"\n", a...)
		} else {
			log.Printf(time.Now().Format("15:04:05.00")+" <---> "+"TXN"+tid+":"+format+"\n", a...)
		}
	}
}

func DPrintf(format string, a ...interface{}) {
	if ShowDebugInfo {
		if !LogToFile {
			fmt.Printf(time.Now().Format("15:04:05.00")+" <---> "+format+"\n", a...)
		} else {
			log.Printf(time.Now().Format("15:04:05.00")+" <---> "+format+"\n", a...)
		}
	}
}

// TimeTrack logs how long an operation named name took for transaction tid.
func TimeTrack(start time.Time, name string, tid string) {
	TPrintf("TXN" + tid + ": time cost for " + name + " : " + time.Since(start).String())
}

func TPrintf(format string, a ...interface{}) {
	if ShowTestInfo {
		if !LogToFile {
			fmt.Printf(time.Now().Format("15:04:05.00")+" <---> "+format+"\n", a...)
		} else {
			log.Printf(time.Now().Format("15:04:05.00")+" <---> "+format+"\n", a...)
		}
	}
}

func JToString(v interface{}) string {
	byt, _ := json.Marshal(v)
	return string(byt)
}

func JPrint(v interface{}) {
	byt, _ := json.Marshal(v)
	fmt.Println(string(byt))
}

// Assert panics with msg when cond is false. Used for invariants that must
// never be violated by correct code, never for recoverable input errors.
func Assert(cond bool, msg string) bool {
	if !cond {
		panic("[ERROR] assertion failed: " + msg)
	}
	return cond
}

// Warn logs msg when cond is false and warnings are enabled; it never panics.
func Warn(cond bool, msg string) bool {
	if ShowWarnings && !cond {
		if !LogToFile {
			fmt.Printf("[WARNING] :" + msg + "\n")
		} else {
			log.Printf("[WARNING] :" + msg + "\n")
		}
	}
	return cond
}

// CheckError panics on unexpected internal errors (e.g. a listener failing
// to bind). Per-request errors (§7) must never pass through this function.
func CheckError(err error) {
	if err != nil {
		panic(err.Error())
	}
}
