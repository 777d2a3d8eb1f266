package main

import (
	"encoding/binary"
	"fmt"
)

// BitByteCount 位元數對應的位元組數 ceil(n/8)
func BitByteCount(n int) int {
	return (n + 7) / 8
}

// PackBits 將布林值打包為位元組 (每位元組 8 個，低位元在前)
//
// 不足 8 的倍數時，最後一個位元組的高位補零。
func PackBits(bits []bool) []byte {
	bytes := make([]byte, BitByteCount(len(bits)))
	for i, bit := range bits {
		if bit {
			bytes[i/8] |= 1 << (i % 8)
		}
	}
	return bytes
}

// UnpackBits 將寫入多個線圈請求的位元組還原為 count 個布林值
//
// 從最後傳送的位元組開始往前走訪，每個位元組由高位往低位，目標位址遞減；
// 最後一個位元組只取有效的低位元，填充位元忽略。結果等同第 i 個值取自
// 第 i/8 個位元組的第 i%8 位元。
func UnpackBits(data []byte, count int) ([]bool, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidValueCount, count)
	}

	byteCount := BitByteCount(count)
	if len(data) < byteCount {
		return nil, fmt.Errorf("%w: 需要 %d 位元組，收到 %d", ErrInvalidValueCount, byteCount, len(data))
	}

	bits := make([]bool, count)
	target := count
	bit := 8 - (byteCount*8 - count)
	for i := byteCount - 1; i >= 0; i-- {
		current := data[i]
		for bit--; bit >= 0; bit-- {
			target--
			bits[target] = current&(1<<uint(bit)) != 0
		}
		bit = 8
	}

	return bits, nil
}

// RegistersToBytes 將暫存器值轉換為位元組陣列 (Big Endian)
func RegistersToBytes(registers []uint16) []byte {
	bytes := make([]byte, len(registers)*2)
	for i, reg := range registers {
		binary.BigEndian.PutUint16(bytes[i*2:], reg)
	}
	return bytes
}

// BytesToRegisters 將位元組陣列轉換為暫存器值 (Big Endian)
func BytesToRegisters(data []byte) []uint16 {
	registers := make([]uint16, len(data)/2)
	for i := range registers {
		registers[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return registers
}
