// suggest_layout reads buffer accesses inside loop nests from a YAML file, and reports for each one the
// storage layout that matches the order in which the loops visit the buffer.
//
// Usage:
//
//	suggest_layout [-bijective] [-eval] [-eval_limit=N] [-parallelism=N] [-v=1] <accesses.yaml>
//
// See fileConfig for the format of the YAML file.
package main

import (
	"flag"
	"os"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagBijective = flag.Bool("bijective", false,
		"Also check whether the flattened access is a bijective affine map of the loop variables, "+
			"that is, whether the loop nest visits every element exactly once.")
	flagEval = flag.Bool("eval", false,
		"Verify each suggested index map by enumerating the buffer's coordinates. "+
			"Symbolic dimensions must be given values in the file's bindings.")
	flagEvalLimit = flag.Int("eval_limit", 1_000_000,
		"Maximum number of elements of a buffer enumerated by -eval: larger buffers are skipped.")
	flagParallelism = flag.Int("parallelism", 0,
		"Maximum number of accesses analyzed in parallel. 0 uses the number of CPUs, -1 is unlimited.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing YAML file with the accesses to analyze. See 'suggest_layout -help'")
		os.Exit(1)
	}
	if len(args) > 1 {
		klog.Errorf("Too many arguments. See 'suggest_layout -help'.")
		os.Exit(1)
	}
	config := must.M1(loadConfig(args[0]))
	accesses := must.M1(config.build())
	if numFailed := report(accesses); numFailed > 0 {
		klog.Errorf("%d of %d accesses failed", numFailed, len(accesses))
		os.Exit(1)
	}
}
