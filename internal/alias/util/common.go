package util

import (
	"fmt"
	"io"
)

func CloseQuiet(c io.Closer) {
	err := c.Close()
	if err != nil {
		fmt.Println(err)
	}
}
