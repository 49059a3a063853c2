package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gibson/gibson/pkg/client"
)

func main() {
	c, err := client.Dial("localhost:6464")
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer c.Close()

	fmt.Println("=== Gibson Client Example ===")

	fmt.Println("\n--- Single-key operations ---")

	if err := c.Set([]byte("user:1"), []byte("john_doe"), 0); err != nil {
		log.Printf("SET failed: %v", err)
	} else {
		fmt.Println("✓ SET user:1 = john_doe")
	}

	if value, encoding, err := c.Get([]byte("user:1")); err != nil {
		log.Printf("GET failed: %v", err)
	} else {
		fmt.Printf("✓ GET user:1 = %s (encoding=%d)\n", value, encoding)
	}

	if n, err := c.Count([]byte("user:1")); err != nil {
		log.Printf("COUNT failed: %v", err)
	} else {
		fmt.Printf("✓ COUNT user:1 = %d\n", n)
	}

	fmt.Println("\n--- Counters ---")

	if err := c.Set([]byte("hits"), []byte("41"), 0); err != nil {
		log.Printf("SET failed: %v", err)
	}
	if v, err := c.Inc([]byte("hits")); err != nil {
		log.Printf("INC failed: %v", err)
	} else {
		fmt.Printf("✓ INC hits = %d\n", v)
	}

	fmt.Println("\n--- Expiration and locks ---")

	if err := c.Set([]byte("temp"), []byte("temp_value"), 5); err != nil {
		log.Printf("SET with TTL failed: %v", err)
	} else {
		fmt.Println("✓ SET temp with 5s TTL")
	}

	if err := c.Lock([]byte("user:1"), 30); err != nil {
		log.Printf("LOCK failed: %v", err)
	} else {
		fmt.Println("✓ LOCK user:1 for 30s")
	}
	if err := c.Set([]byte("user:1"), []byte("should be blocked"), 0); err == client.ErrLocked {
		fmt.Println("✓ SET user:1 correctly returned LOCKED")
	}
	if err := c.Unlock([]byte("user:1")); err != nil {
		log.Printf("UNLOCK failed: %v", err)
	} else {
		fmt.Println("✓ UNLOCK user:1")
	}

	fmt.Println("\n--- Prefix (multi-key) operations ---")

	for i, v := range []string{"a", "b", "c"} {
		key := fmt.Sprintf("list:%d", i)
		if err := c.Set([]byte(key), []byte(v), 0); err != nil {
			log.Printf("SET %s failed: %v", key, err)
		}
	}
	if keys, err := c.Keys([]byte("list:")); err != nil {
		log.Printf("KEYS failed: %v", err)
	} else {
		fmt.Printf("✓ KEYS list: = %v\n", stringKeys(keys))
	}
	if n, err := c.MCount([]byte("list:")); err != nil {
		log.Printf("MCOUNT failed: %v", err)
	} else {
		fmt.Printf("✓ MCOUNT list: = %d\n", n)
	}
	if err := c.MDel([]byte("list:")); err != nil {
		log.Printf("MDEL failed: %v", err)
	} else {
		fmt.Println("✓ MDEL list:")
	}

	fmt.Println("\n--- Cleanup ---")

	time.Sleep(100 * time.Millisecond)
	if err := c.Del([]byte("user:1")); err != nil {
		log.Printf("DEL failed: %v", err)
	} else {
		fmt.Println("✓ DEL user:1")
	}

	fmt.Println("\n=== Example Complete ===")
}

func stringKeys(keys [][]byte) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
