package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	s3transfer "github.com/packit-aws-playground/s3transfer"
)

func main() {
	var (
		bucket     = flag.String("bucket", "", "destination bucket (required)")
		key        = flag.String("key", "", "destination object key (required)")
		file       = flag.String("file", "", "local file to upload (required)")
		region     = flag.String("region", "us-east-1", "object-store region")
		endpoint   = flag.String("endpoint", "", "override endpoint host (S3-compatible stores, local testing)")
		throughput = flag.Float64("throughput-gbps", 5, "target aggregate throughput")
		partSize   = flag.Int64("part-size", 8<<20, "part size in bytes")
		pauseFile  = flag.String("pause-file", "", "write a resume token here if interrupted")
		resumeFile = flag.String("resume-file", "", "resume from a token previously written by -pause-file")
	)
	flag.Parse()

	if *bucket == "" || *key == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "usage: s3put -bucket B -key K -file F [-resume-file R]")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *file, err)
		os.Exit(1)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stat %s: %v\n", *file, err)
		os.Exit(1)
	}

	client, err := s3transfer.NewClient(s3transfer.Config{
		Region:               *region,
		Endpoint:             *endpoint,
		TargetThroughputGbps: *throughput,
		PartSize:             *partSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Shutdown()

	var resumeToken []byte
	if *resumeFile != "" {
		resumeToken, err = os.ReadFile(*resumeFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read resume file: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan s3transfer.FinishResult, 1)
	in := s3transfer.PutObjectInput{
		Bucket:        *bucket,
		Key:           *key,
		Body:          f,
		ContentLength: info.Size(),
		ResumeToken:   resumeToken,
		OnProgress: func(partNum int, data []byte) {
			fmt.Printf("part %d uploaded (%d bytes)\n", partNum, len(data))
		},
		OnFinish: func(r s3transfer.FinishResult) { done <- r },
	}

	mr, err := s3transfer.NewAutoRangedPut(client, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "construct upload: %v\n", err)
		os.Exit(1)
	}

	if *pauseFile != "" {
		pauseHandle := s3transfer.NewPauseHandle(mr)
		go func() {
			<-ctx.Done()
			token, ok := pauseHandle.RequestPause()
			if !ok {
				fmt.Fprintln(os.Stderr, "upload not far enough along to pause")
				return
			}
			if err := os.WriteFile(*pauseFile, token, 0o600); err != nil {
				fmt.Fprintf(os.Stderr, "write pause token: %v\n", err)
				return
			}
			fmt.Printf("paused: resume token written to %s\n", *pauseFile)
		}()
	}

	start := time.Now()
	if err := client.Submit(mr); err != nil {
		fmt.Fprintf(os.Stderr, "submit upload: %v\n", err)
		os.Exit(1)
	}

	result := <-done
	elapsed := time.Since(start)
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "upload failed after %v: %v\n", elapsed, result.Err)
		os.Exit(1)
	}
	fmt.Printf("upload complete in %v\n", elapsed)
}
